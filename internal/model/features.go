package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrContractViolation is returned when a feature set does not carry exactly
// the expected names, or when a vector does not match the shape the
// classifier artifact was fitted on. It indicates drift between the
// extractor and the classifier and must never be silently recovered.
var ErrContractViolation = errors.New("feature contract violation")

// Feature names in canonical order. The classifier artifact refers to
// features by these names.
const (
	FeatureUsingIP           = "UsingIP"
	FeatureLongURL           = "LongURL"
	FeatureShortURL          = "ShortURL"
	FeatureSymbolAt          = "Symbol@"
	FeatureRedirecting       = "Redirecting//"
	FeaturePrefixSuffix      = "PrefixSuffix-"
	FeatureSubDomains        = "SubDomains"
	FeatureHTTPS             = "HTTPS"
	FeatureDomainRegLen      = "DomainRegLen"
	FeatureFavicon           = "Favicon"
	FeatureNonStdPort        = "NonStdPort"
	FeatureHTTPSDomainURL    = "HTTPSDomainURL"
	FeatureRequestURL        = "RequestURL"
	FeatureAnchorURL         = "AnchorURL"
	FeatureLinksInScriptTags = "LinksInScriptTags"
	FeatureServerFormHandler = "ServerFormHandler"
)

// FeatureNames lists every feature name in canonical order.
var FeatureNames = []string{
	FeatureUsingIP,
	FeatureLongURL,
	FeatureShortURL,
	FeatureSymbolAt,
	FeatureRedirecting,
	FeaturePrefixSuffix,
	FeatureSubDomains,
	FeatureHTTPS,
	FeatureDomainRegLen,
	FeatureFavicon,
	FeatureNonStdPort,
	FeatureHTTPSDomainURL,
	FeatureRequestURL,
	FeatureAnchorURL,
	FeatureLinksInScriptTags,
	FeatureServerFormHandler,
}

// FeatureCount is the number of features in a FeatureVector.
const FeatureCount = 16

// FeatureVector describes the structure of a URL and its rendered document.
// Every field except SubDomains is boolean-coded as 0 or 1.
type FeatureVector struct {
	UsingIP           int `json:"UsingIP"`
	LongURL           int `json:"LongURL"`
	ShortURL          int `json:"ShortURL"`
	SymbolAt          int `json:"Symbol@"`
	Redirecting       int `json:"Redirecting//"`
	PrefixSuffix      int `json:"PrefixSuffix-"`
	SubDomains        int `json:"SubDomains"`
	HTTPS             int `json:"HTTPS"`
	DomainRegLen      int `json:"DomainRegLen"`
	Favicon           int `json:"Favicon"`
	NonStdPort        int `json:"NonStdPort"`
	HTTPSDomainURL    int `json:"HTTPSDomainURL"`
	RequestURL        int `json:"RequestURL"`
	AnchorURL         int `json:"AnchorURL"`
	LinksInScriptTags int `json:"LinksInScriptTags"`
	ServerFormHandler int `json:"ServerFormHandler"`
}

// fields returns pointers to the vector's fields in canonical order.
func (v *FeatureVector) fields() []*int {
	return []*int{
		&v.UsingIP,
		&v.LongURL,
		&v.ShortURL,
		&v.SymbolAt,
		&v.Redirecting,
		&v.PrefixSuffix,
		&v.SubDomains,
		&v.HTTPS,
		&v.DomainRegLen,
		&v.Favicon,
		&v.NonStdPort,
		&v.HTTPSDomainURL,
		&v.RequestURL,
		&v.AnchorURL,
		&v.LinksInScriptTags,
		&v.ServerFormHandler,
	}
}

// NewFeatureVector builds a FeatureVector from a name/value map.
// The map must contain exactly the 16 feature names; a missing or unknown
// name yields ErrContractViolation.
func NewFeatureVector(values map[string]int) (FeatureVector, error) {
	var v FeatureVector

	missing := make([]string, 0)
	fields := v.fields()
	for i, name := range FeatureNames {
		val, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		*fields[i] = val
	}

	extra := make([]string, 0)
	for name := range values {
		if FeatureIndex(name) < 0 {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	if len(missing) > 0 || len(extra) > 0 {
		return FeatureVector{}, fmt.Errorf("%w: missing [%s] unexpected [%s]",
			ErrContractViolation, strings.Join(missing, ", "), strings.Join(extra, ", "))
	}

	return v, nil
}

// FeatureIndex returns the canonical position of a feature name, or -1.
func FeatureIndex(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Values returns the feature values in canonical order.
func (v FeatureVector) Values() []float64 {
	fields := v.fields()
	out := make([]float64, len(fields))
	for i, f := range fields {
		out[i] = float64(*f)
	}
	return out
}

// Map returns the features keyed by name.
func (v FeatureVector) Map() map[string]int {
	fields := v.fields()
	out := make(map[string]int, len(fields))
	for i, f := range fields {
		out[FeatureNames[i]] = *f
	}
	return out
}

// Get returns the value of the named feature.
func (v FeatureVector) Get(name string) (int, bool) {
	idx := FeatureIndex(name)
	if idx < 0 {
		return 0, false
	}
	return *v.fields()[idx], true
}

// String renders the vector as name=value pairs in canonical order.
func (v FeatureVector) String() string {
	fields := v.fields()
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s=%d", FeatureNames[i], *f)
	}
	return strings.Join(parts, " ")
}
