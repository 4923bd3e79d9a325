package models

type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}
