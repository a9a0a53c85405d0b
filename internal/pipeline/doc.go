// Package pipeline runs the deal extraction batch job.
//
// A Runner searches the mailbox for unprocessed threads and takes every
// message through the same steps: skip checks, claim, extraction, owner
// lookup, record assembly, sink write and finally marking the message read
// and labelling its thread. The decisions are pure functions in decide.go
// (Precheck, CheckExtraction, Plan); the Runner applies their effects.
//
// Failures are isolated per message. A message whose extraction fails is
// left unmarked so the next run picks it up again. Sink failures are logged
// and do not stop the message from being marked.
package pipeline
