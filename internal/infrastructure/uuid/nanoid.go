package uuid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid"
)

// Generator record id generator interface
type Generator interface {
	Generate() (string, error)
}

// recordAlphabet keeps ids safe for urls and case-insensitive collations
const recordAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoIDGenerator Generator implementation using NanoID
type NanoIDGenerator struct {
	Length int
}

var _ Generator = &NanoIDGenerator{}

// NewNanoIDGenerator create a new `NanoIDGenerator` instance
func NewNanoIDGenerator(length int) (*NanoIDGenerator, error) {
	if length < 8 {
		return nil, fmt.Errorf("id length must be at least 8, got %d", length)
	}
	return &NanoIDGenerator{Length: length}, nil
}

// Generate generate a record id
func (ns *NanoIDGenerator) Generate() (string, error) {
	return gonanoid.Generate(recordAlphabet, ns.Length)
}
