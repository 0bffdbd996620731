// Package integration provides integration tests for the seedpost uploader.
// These tests run the complete application against a local listing server, a
// fake Bot API server and an in-process transfer engine, and check the scan,
// transfer and publish cycle together with the operator command plane.
package integration
