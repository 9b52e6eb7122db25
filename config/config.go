package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// rawRoot mirrors Root but captures `route:` as a yaml.Node so the entries
// can be decoded in file order -- a plain map[string]RouteEntry would lose
// the ordering the client needs when it registers routes, since the server
// processes registration entries strictly in the order the client sent
// them and stops at the first failure.
type rawRoot struct {
	LogLevel string    `yaml:"logLevel,omitempty"`
	LogFile  string    `yaml:"logFile,omitempty"`
	Server   *rawSide  `yaml:"server,omitempty"`
	Client   *rawSide  `yaml:"client,omitempty"`
}

type rawSide struct {
	Bind                     string    `yaml:"bind,omitempty"`
	Remote                   string    `yaml:"remote,omitempty"`
	Token                    string    `yaml:"token"`
	Cert                     string    `yaml:"cert"`
	PrivateKey               string    `yaml:"privateKey,omitempty"`
	RetryInterval            string    `yaml:"retryInterval,omitempty"`
	MaxRetry                 uint      `yaml:"maxRetry,omitempty"`
	MaxConcurrentBidiStreams int       `yaml:"maxConcurrentBidiStreams,omitempty"`
	Route                    yaml.Node `yaml:"route"`
}

// Load reads and validates the tunnel configuration at path.
func Load(path string) (Root, error) {
	file, err := os.Open(path)
	if err != nil {
		return Root{}, errors.Wrapf(err, "opening config file %s", path)
	}
	defer file.Close()

	var raw rawRoot
	if err := yaml.NewDecoder(file).Decode(&raw); err != nil {
		return Root{}, errors.Wrapf(err, "parsing YAML config at %s", path)
	}

	if (raw.Server == nil) == (raw.Client == nil) {
		return Root{}, errors.New("exactly one of server or client must be configured")
	}

	root := Root{LogLevel: raw.LogLevel, LogFile: raw.LogFile}
	if raw.Server != nil {
		routes, err := decodeRoutes(raw.Server.Route)
		if err != nil {
			return Root{}, errors.Wrap(err, "decoding server routes")
		}
		root.Server = &Server{
			Bind:                 raw.Server.Bind,
			Token:                raw.Server.Token,
			Cert:                 raw.Server.Cert,
			PrivateKey:           raw.Server.PrivateKey,
			MaxConcurrentStreams: raw.Server.MaxConcurrentBidiStreams,
			Routes:               routes,
		}
	}
	if raw.Client != nil {
		routes, err := decodeRoutes(raw.Client.Route)
		if err != nil {
			return Root{}, errors.Wrap(err, "decoding client routes")
		}
		root.Client = &Client{
			Remote:               raw.Client.Remote,
			Token:                raw.Client.Token,
			Cert:                 raw.Client.Cert,
			RetryInterval:        raw.Client.RetryInterval,
			MaxRetry:             raw.Client.MaxRetry,
			MaxConcurrentStreams: raw.Client.MaxConcurrentBidiStreams,
			Routes:               routes,
		}
	}
	return root, nil
}

// decodeRoutes walks a `route:` mapping node in document order and decodes
// each value, attaching the key as the entry's Name.
func decodeRoutes(node yaml.Node) ([]RouteEntry, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("route must be a mapping of name to route configuration")
	}
	entries := make([]RouteEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var entry RouteEntry
		if err := valNode.Decode(&entry); err != nil {
			return nil, errors.Wrapf(err, "decoding route %q", keyNode.Value)
		}
		entry.Name = keyNode.Value
		entries = append(entries, entry)
	}
	return entries, nil
}

// LogConfig pulls the ambient logger.Config fields out of Root without
// introducing an import cycle between config and logger.
func (r Root) LogConfig() (level, file string) {
	return r.LogLevel, r.LogFile
}
