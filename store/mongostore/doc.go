// Package mongostore implements the billing, quota and tag stores on MongoDB.
//
// Collections: users (with an embedded billing field group), quota_ledger,
// tag_counters and passwords. Quota consumption, tag counter batches, merge
// rewrites and usage transfers run in multi-document transactions and need a
// replica set. PasswordFeed additionally needs pre- and post-images on the
// passwords collection (see EnablePreAndPostImages).
package mongostore
