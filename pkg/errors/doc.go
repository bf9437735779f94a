// Package errors provides coded errors for kvsync. Codes are stable and
// meant to be matched in tests and by callers with IsErrorCode.
package errors
