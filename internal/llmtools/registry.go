package llmtools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolHandler executes a tool with raw JSON arguments and returns a raw JSON
// result. Errors must be safe to surface back to the calling model.
type ToolHandler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolDefinition describes a callable tool with stable identity and metadata.
// StableName is lowercase snake_case and never changes across versions; SemVer
// follows semantic versioning with an optional leading 'v'.
type ToolDefinition struct {
	StableName   string
	SemVer       string
	Description  string
	JSONSchema   json.RawMessage
	Capabilities []string
	Handler      ToolHandler
}

// ToolMeta is a serializable view for listings and logs.
type ToolMeta struct {
	StableName   string   `json:"stable_name"`
	SemVer       string   `json:"semver"`
	Capabilities []string `json:"capabilities"`
}

var (
	// ErrUnknownTool is returned by Invoke for names that are not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments wraps argument decoding and schema failures.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Registry holds tools keyed by stable name. It is populated once at startup
// and read concurrently afterwards.
type Registry struct {
	nameToDef map[string]ToolDefinition
	schemas   map[string]*jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		nameToDef: make(map[string]ToolDefinition),
		schemas:   make(map[string]*jsonschema.Schema),
	}
}

var (
	nameRe   = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	semverRe = regexp.MustCompile(`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)
)

// Register adds or replaces a tool after validating its name, version, schema
// and handler.
func (r *Registry) Register(def ToolDefinition) error {
	if !nameRe.MatchString(def.StableName) {
		return fmt.Errorf("invalid stable name %q: must be lowercase snake_case starting with a letter", def.StableName)
	}
	if !semverRe.MatchString(def.SemVer) {
		return fmt.Errorf("invalid semver %q for %s", def.SemVer, def.StableName)
	}
	if len(def.JSONSchema) == 0 || !isJSONObject(def.JSONSchema) {
		return fmt.Errorf("%s: json schema must be a non-empty JSON object", def.StableName)
	}
	if def.Handler == nil {
		return fmt.Errorf("%s: handler must not be nil", def.StableName)
	}
	schema, err := compileSchema(def.StableName, def.JSONSchema)
	if err != nil {
		return err
	}
	caps := make([]string, 0, len(def.Capabilities))
	for _, c := range def.Capabilities {
		if c = strings.TrimSpace(c); c != "" {
			caps = append(caps, c)
		}
	}
	def.Capabilities = caps
	if r.nameToDef == nil {
		r.nameToDef = make(map[string]ToolDefinition)
		r.schemas = make(map[string]*jsonschema.Schema)
	}
	r.nameToDef[def.StableName] = def
	r.schemas[def.StableName] = schema
	return nil
}

// compileSchema compiles a tool's argument schema once at registration.
func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	resource := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%s: add json schema: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("%s: compile json schema: %w", name, err)
	}
	return schema, nil
}

// Get returns a tool definition by stable name.
func (r *Registry) Get(stableName string) (ToolDefinition, bool) {
	def, ok := r.nameToDef[stableName]
	return def, ok
}

// Invoke validates args against the tool's schema and runs its handler.
// Empty args are treated as an empty object.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage(`{}`)
	}
	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
	}
	if err := r.schemas[name].Validate(value); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
	}
	return def.Handler(ctx, args)
}

// Specs returns OpenAI-compatible tool specs sorted by stable name.
func (r *Registry) Specs() []ToolSpec {
	names := r.sortedNames()
	specs := make([]ToolSpec, 0, len(names))
	for _, name := range names {
		def := r.nameToDef[name]
		specs = append(specs, ToolSpec{
			Name:        def.StableName,
			Description: fmt.Sprintf("%s (version %s)", def.Description, def.SemVer),
			JSONSchema:  def.JSONSchema,
		})
	}
	return specs
}

// Catalog returns ToolMeta entries sorted by stable name.
func (r *Registry) Catalog() []ToolMeta {
	names := r.sortedNames()
	out := make([]ToolMeta, 0, len(names))
	for _, name := range names {
		def := r.nameToDef[name]
		out = append(out, ToolMeta{
			StableName:   def.StableName,
			SemVer:       def.SemVer,
			Capabilities: append([]string(nil), def.Capabilities...),
		})
	}
	return out
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.nameToDef))
	for name := range r.nameToDef {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isJSONObject(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	_, ok := v.(map[string]any)
	return ok
}
