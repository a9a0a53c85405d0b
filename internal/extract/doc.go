// Package extract turns a wholesaler email body into a structured Deal by
// calling a Gemini generateContent endpoint.
//
// A call has three outcomes. Transport failures and non-2xx replies are hard
// errors (*TransportError, *StatusError) and leave the message for a later run.
// A 2xx reply without usable model text, or with text that does not decode into
// a Deal, is a soft Result of KindEmpty. Anything else is KindExtracted.
package extract
