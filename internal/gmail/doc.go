// Package gmail provides the mailbox side of dealscout on top of the Gmail API.
//
// It searches threads, reads their messages in raw form and parses them with
// enmime, resolves (or creates) the processed label, and applies the
// read/label changes once a message has been handled.
//
// Every API call is recorded as a google_api_operations_total metric and
// wrapped in a google.gmail.<operation> client span.
//
// Example usage:
//
//	httpClient, err := google.GetHTTPClientForAccount(ctx, conf, "default")
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, gmail.Options{Account: "default", HTTPClient: httpClient})
//	if err != nil {
//	    return err
//	}
//
//	threads, err := client.ListThreads(ctx, "label:deals -label:deals-done", 5)
//	if err != nil {
//	    return err
//	}
package gmail
