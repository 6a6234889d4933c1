package types

// SchemaMetadata describes a dataset independently of its columns.
// Optional fields are omitted from the wire form when empty.
type SchemaMetadata struct {
	Domain          string            `json:"domain,omitempty"`
	Dataset         string            `json:"dataset,omitempty"`
	Sensitivity     Sensitivity       `json:"sensitivity,omitempty"`
	Version         int               `json:"version,omitempty"`
	KeyValueTags    map[string]string `json:"key_value_tags,omitempty"`
	KeyOnlyTags     []string          `json:"key_only_tags,omitempty"`
	Owners          []Owner           `json:"owners,omitempty"`
	UpdateBehaviour UpdateBehaviour   `json:"update_behaviour,omitempty"`
}

// NewSchemaMetadata returns metadata with the required fields set.
func NewSchemaMetadata(domain, dataset string, sensitivity Sensitivity, owners ...Owner) SchemaMetadata {
	return SchemaMetadata{
		Domain:      domain,
		Dataset:     dataset,
		Sensitivity: sensitivity,
		Owners:      owners,
	}
}

// Missing returns the names of required fields that are empty or invalid.
func (m SchemaMetadata) Missing() []string {
	var missing []string
	if m.Domain == "" {
		missing = append(missing, "domain")
	}
	if m.Dataset == "" {
		missing = append(missing, "dataset")
	}
	if !m.Sensitivity.Valid() {
		missing = append(missing, "sensitivity")
	}
	if len(m.Owners) == 0 {
		missing = append(missing, "owners")
	}

	return missing
}
