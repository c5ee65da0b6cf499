// Package features derives the fixed 16-feature vector used by the
// classifier from a page URL and its rendered HTML document.
//
// URL features (UsingIP, LongURL, ShortURL, Symbol@, Redirecting//,
// PrefixSuffix-, SubDomains, HTTPS, DomainRegLen, NonStdPort,
// HTTPSDomainURL) are computed from the URL string alone. Document features
// (Favicon, RequestURL, AnchorURL, LinksInScriptTags, ServerFormHandler) are
// computed from the parsed DOM.
//
// The rules reproduce the heuristics the classifier was trained against,
// including their known rough edges: a resource counts as "external" when
// its attribute value does not contain the full page URL as a substring,
// and DomainRegLen is always 0. Changing either shifts the feature
// distribution away from the training data.
//
// Extraction is pure: the same URL and document always yield the same vector.
package features
