// Package textutil provides small text helpers shared across packages:
// filesystem-safe tokens for list and region names, and caseless keys used
// to detect names that differ only by case.
package textutil
