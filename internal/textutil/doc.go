// Package textutil provides small text helpers shared by logging, prompt
// assembly, and reporting.
package textutil
