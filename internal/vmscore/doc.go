// Package vmscore holds the types shared across every VMS core package:
// the structured error type used for all domain-level failures, and the
// entity identifiers that make up the data model in SPEC §3.
package vmscore
