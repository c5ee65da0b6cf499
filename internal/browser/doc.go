// Package browser talks to the monitored browser and obtains rendered
// documents.
//
// Client speaks the Chromium DevTools protocol: the HTTP endpoint lists the
// open tabs and every tab's WebSocket carries Runtime.evaluate and Page.close
// calls. PhishGuard attaches to an already running browser and never owns
// its lifetime, so the protocol is spoken directly instead of through an
// allocator that would close the browser on cancellation.
//
// A Renderer turns a URL into HTML for feature extraction. HeadlessRenderer
// loads the page in a private headless Chromium, HTTPRenderer fetches it
// without running scripts, and SessionRenderer captures the DOM the user is
// looking at.
package browser
