// Package fakes provides mock implementations of the Azure SDK surfaces
// used by rotord, for use in unit tests without network access.
package fakes
