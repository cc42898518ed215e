package detection

import "fmt"

// Feature source categories.
const (
	CategoryLexical = "lexical"
	CategoryDomain  = "domain"
	CategoryContent = "content"
)

// FeatureDescriptor is one schema entry: a stable name plus the extractor
// category it comes from.
type FeatureDescriptor struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// FeatureSchema is the fixed, ordered definition of every feature a model
// expects. Order is part of the model contract: reordering or renaming
// invalidates the trained artifact.
type FeatureSchema struct {
	features []FeatureDescriptor
	index    map[string]int
}

// NewFeatureSchema builds a schema with its name->index lookup. Duplicate
// names are a definition bug and rejected outright.
func NewFeatureSchema(features []FeatureDescriptor) (*FeatureSchema, error) {
	idx := make(map[string]int, len(features))
	for i, f := range features {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: empty feature name at position %d", ErrArtifactIncompatible, i)
		}
		if _, dup := idx[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature name %q", ErrArtifactIncompatible, f.Name)
		}
		idx[f.Name] = i
	}
	return &FeatureSchema{features: features, index: idx}, nil
}

func (s *FeatureSchema) Len() int { return len(s.features) }

func (s *FeatureSchema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *FeatureSchema) At(i int) FeatureDescriptor { return s.features[i] }

// Names returns the ordered feature names (fresh slice, schema stays
// immutable).
func (s *FeatureSchema) Names() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name
	}
	return names
}

// NamesByCategory returns the ordered names with the given category.
func (s *FeatureSchema) NamesByCategory(category string) []string {
	var names []string
	for _, f := range s.features {
		if f.Category == category {
			names = append(names, f.Name)
		}
	}
	return names
}

// Descriptors returns a copy of the ordered entries.
func (s *FeatureSchema) Descriptors() []FeatureDescriptor {
	out := make([]FeatureDescriptor, len(s.features))
	copy(out, s.features)
	return out
}

// suspiciousKeywords and impersonatedBrands drive the has_<kw> and
// has_brand_<name> lexical features. The lists are part of the schema
// contract: models are trained against exactly these.
var suspiciousKeywords = []string{
	"secure", "account", "update", "login", "verify", "confirm",
	"banking", "signin", "webscr", "password", "suspend",
	"restricted", "alert", "credential", "authenticate", "validation",
}

var impersonatedBrands = []string{
	"paypal", "microsoft", "apple", "google",
	"amazon", "facebook", "netflix", "bank",
}

// ReferenceSchema is the 79-feature layout this pipeline's extractors
// produce, in training order: 60 lexical, 7 domain, 12 content. The loaded
// artifact carries its own copy; the two must agree or the bundle is
// rejected at load.
func ReferenceSchema() *FeatureSchema {
	lex := func(name string) FeatureDescriptor { return FeatureDescriptor{Name: name, Category: CategoryLexical} }
	dom := func(name string) FeatureDescriptor { return FeatureDescriptor{Name: name, Category: CategoryDomain} }
	con := func(name string) FeatureDescriptor { return FeatureDescriptor{Name: name, Category: CategoryContent} }

	features := []FeatureDescriptor{
		// URL structure counts
		lex("url_length"), lex("num_dots"), lex("num_hyphens"), lex("num_underscores"),
		lex("num_slashes"), lex("num_question"), lex("num_equal"), lex("num_at"),
		lex("num_ampersand"), lex("num_percent"),
		// Character analysis
		lex("url_entropy"), lex("host_entropy"), lex("digit_count"), lex("digit_ratio"),
		lex("letter_count"), lex("letter_ratio"), lex("special_char_ratio"),
		// Host shape
		lex("has_ip"), lex("has_port"), lex("domain_length"), lex("subdomain_count"),
		lex("has_suspicious_tld"), lex("has_trusted_tld"), lex("is_https"), lex("is_http"),
		// Path and query
		lex("url_depth"), lex("path_length"), lex("has_query_string"), lex("query_length"),
		lex("num_query_params"),
		// Suspicious patterns
		lex("excessive_subdomains"), lex("has_double_slash"), lex("has_url_shortener"),
		lex("has_redirect_param"), lex("brand_in_subdomain"), lex("has_punycode"),
	}
	for _, kw := range suspiciousKeywords {
		features = append(features, lex("has_"+kw))
	}
	for _, brand := range impersonatedBrands {
		features = append(features, lex("has_brand_"+brand))
	}
	features = append(features,
		dom("has_dns"), dom("dns_ip_count"), dom("has_aaaa"), dom("domain_age_days"),
		dom("has_ssl"), dom("ssl_days_valid"), dom("ssl_trusted"),

		con("http_status"), con("num_forms"), con("num_inputs"), con("has_password_field"),
		con("num_page_links"), con("num_scripts"), con("num_iframes"),
		con("external_script_ratio"), con("has_js_redirect"), con("redirect_count"),
		con("title_host_mismatch"), con("has_favicon"),
	)

	schema, err := NewFeatureSchema(features)
	if err != nil {
		// Reference layout is compiled in; a duplicate here is a programming
		// error, not a runtime condition.
		panic(err)
	}
	return schema
}
