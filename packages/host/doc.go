// Package host provides the small platform utilities a host application
// calls next to fetch: plugin tarball extraction, the operating system name
// and an elevated-privilege check.
package host
