// Package s3 provides an Amazon S3 backed modelstore.Store, plus a
// DynamoDB-backed registry for atomically publishing snapshot versions.
package s3
