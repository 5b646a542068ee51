package environment

// Production is the environment used when nothing else is configured.
const Production = "production"

// Environment describes a single deployment target.
type Environment struct {
	ID         string `json:"id" yaml:"id"`
	BucketPath string `json:"bucketPath,omitempty" yaml:"bucketPath,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	UsageNote  string `json:"usageNote,omitempty" yaml:"usageNote,omitempty"`
}

// PathFragment returns the value substituted into URL templates.
func (e Environment) PathFragment() string {
	if e.BucketPath != "" {
		return e.BucketPath
	}
	return e.ID
}

// Map indexes environments by id.
type Map map[string]Environment

// NewMap builds a Map from a list. Later entries win over earlier ones with the same id.
func NewMap(envs []Environment) Map {
	m := make(Map, len(envs))
	for _, env := range envs {
		m[env.ID] = env
	}
	return m
}

// PathFor returns the fragment for env, falling back to the production entry and
// finally to the literal "production".
func (m Map) PathFor(env string) string {
	if e, ok := m[env]; ok {
		return e.PathFragment()
	}
	if e, ok := m[Production]; ok {
		if fragment := e.PathFragment(); fragment != "" {
			return fragment
		}
	}
	return Production
}

// Clone returns a copy that shares no state with m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// File is the environments.json document published for a project.
type File struct {
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	Configuration Configuration `json:"configuration" yaml:"configuration"`
}

// Configuration holds the environment list of a File.
type Configuration struct {
	Environments []Environment `json:"environments" yaml:"environments"`
}

// Map returns the environments of f indexed by id.
func (f File) Map() Map {
	return NewMap(f.Configuration.Environments)
}
