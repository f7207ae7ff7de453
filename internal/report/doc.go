// Package report turns measurement runs into shareable artifacts.
//
// A Run carries a unique ID, timing metadata, the probe results, and
// any data drained from the exchange service. Writers render it as
// compact or pretty JSON for tooling and as Markdown for humans, and
// MultiWriter fans one run out to several destinations. Emailer mails
// status updates, optionally attaching run data, for experiments that
// outlive a terminal session.
package report
