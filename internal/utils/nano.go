package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

// Row identifiers are 32 characters drawn from an alphanumeric alphabet so
// they survive URLs and file names unescaped.
const (
	NanoidSize     = 32
	nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func NanoID() string {
	return NanoIDSize(NanoidSize)
}

func NanoIDSize(size int) string {
	if size <= 0 {
		size = NanoidSize
	}

	return gonanoid.MustGenerate(nanoidAlphabet, size)
}
