// Package gmail provides the Gmail operations elva exposes: inbox listing,
// unread counts, search, sending and marking messages as read.
//
// Calls go through a small API interface so the service can be tested with
// fakes. The production implementation wraps google.golang.org/api/gmail/v1.
// Every call is rate limited, traced and counted, and failures are mapped
// onto the error categories of the google package.
//
// Example usage:
//
//	provider := gmail.NewProvider(cfg.GmailCredentialsPath, cfg.GmailTokenPath, gmail.Options{})
//	svc, err := provider.Service(ctx)
//	if err != nil {
//	    return err
//	}
//	unread, err := svc.UnreadCount(ctx)
package gmail
