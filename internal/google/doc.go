// Package google owns the Gmail OAuth2 credential boundary.
//
// The OAuth client descriptor at GMAIL_CREDENTIALS_PATH is read-only input.
// The token at GMAIL_TOKEN_PATH is created by the installed-app flow,
// refreshed in place and written atomically with mode 0600. It must never
// be committed.
//
// Failures from Google APIs and the token endpoint are mapped onto a small
// set of sentinel errors by Classify so callers can react per category.
package google
