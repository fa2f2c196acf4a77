package rule

import "embed"

// builtinSignaturesFS embeds the built-in test signatures.
//
//go:embed signatures/*.yml
var builtinSignaturesFS embed.FS
