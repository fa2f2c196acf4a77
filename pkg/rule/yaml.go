package rule

// yamlSignature is the intermediate struct for parsing the YAML corpus
// format. Maps YAML fields to types.Signature.
type yamlSignature struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Expression  string   `yaml:"expression"`
	Severity    string   `yaml:"severity,omitempty"`
	Description string   `yaml:"description,omitempty"`
	References  []string `yaml:"references,omitempty"`
	Categories  []string `yaml:"categories,omitempty"`
}

// yamlSignaturesFile represents the top-level structure of a corpus YAML
// file: a "signatures" array.
type yamlSignaturesFile struct {
	Signatures []yamlSignature `yaml:"signatures"`
}
