// Package envspec holds the typed description of one deployable environment:
// the network layout, storage resources, lambda functions, monitoring, and
// API routes that the infra components stamp out.
package envspec

type (
	Environment struct {
		AppName string            `json:"app" yaml:"app" toml:"app"`
		Stage   string            `json:"stage" yaml:"stage" toml:"stage"`
		Region  string            `json:"region" yaml:"region" toml:"region"`
		Tags    map[string]string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`

		Network    Network    `json:"network" yaml:"network" toml:"network"`
		Storage    Storage    `json:"storage" yaml:"storage" toml:"storage"`
		Compute    Compute    `json:"compute" yaml:"compute" toml:"compute"`
		Monitoring Monitoring `json:"monitoring" yaml:"monitoring" toml:"monitoring"`
		Api        Api        `json:"api" yaml:"api" toml:"api"`

		// Format is the file format the environment was loaded from, kept so
		// round-trips preserve it.
		Format string `json:"-" yaml:"-" toml:"-"`
		Path   string `json:"-" yaml:"-" toml:"-"`
	}

	Network struct {
		CidrBlock          string `json:"cidr_block" yaml:"cidr_block" toml:"cidr_block"`
		SubnetBits         int    `json:"subnet_bits,omitempty" yaml:"subnet_bits,omitempty" toml:"subnet_bits,omitempty"`
		MaxAZs             int    `json:"max_azs,omitempty" yaml:"max_azs,omitempty" toml:"max_azs,omitempty"`
		PublicIngressPorts []int  `json:"public_ingress_ports,omitempty" yaml:"public_ingress_ports,omitempty" toml:"public_ingress_ports,omitempty"`
	}

	Storage struct {
		Buckets []Bucket `json:"buckets,omitempty" yaml:"buckets,omitempty" toml:"buckets,omitempty"`
		Tables  []Table  `json:"tables,omitempty" yaml:"tables,omitempty" toml:"tables,omitempty"`
		Queue   *Queue   `json:"queue,omitempty" yaml:"queue,omitempty" toml:"queue,omitempty"`
	}

	Bucket struct {
		Name           string `json:"name" yaml:"name" toml:"name"`
		Versioned      bool   `json:"versioned,omitempty" yaml:"versioned,omitempty" toml:"versioned,omitempty"`
		ExpirationDays int    `json:"expiration_days,omitempty" yaml:"expiration_days,omitempty" toml:"expiration_days,omitempty"`
	}

	Table struct {
		Name          string        `json:"name" yaml:"name" toml:"name"`
		HashKey       string        `json:"hash_key" yaml:"hash_key" toml:"hash_key"`
		RangeKey      string        `json:"range_key,omitempty" yaml:"range_key,omitempty" toml:"range_key,omitempty"`
		BillingMode   string        `json:"billing_mode,omitempty" yaml:"billing_mode,omitempty" toml:"billing_mode,omitempty"`
		ReadCapacity  int           `json:"read_capacity,omitempty" yaml:"read_capacity,omitempty" toml:"read_capacity,omitempty"`
		WriteCapacity int           `json:"write_capacity,omitempty" yaml:"write_capacity,omitempty" toml:"write_capacity,omitempty"`
		TtlAttribute  string        `json:"ttl_attribute,omitempty" yaml:"ttl_attribute,omitempty" toml:"ttl_attribute,omitempty"`
		GlobalIndexes []GlobalIndex `json:"global_indexes,omitempty" yaml:"global_indexes,omitempty" toml:"global_indexes,omitempty"`
	}

	GlobalIndex struct {
		Name       string `json:"name" yaml:"name" toml:"name"`
		HashKey    string `json:"hash_key" yaml:"hash_key" toml:"hash_key"`
		RangeKey   string `json:"range_key,omitempty" yaml:"range_key,omitempty" toml:"range_key,omitempty"`
		Projection string `json:"projection,omitempty" yaml:"projection,omitempty" toml:"projection,omitempty"`
	}

	Queue struct {
		Name                 string `json:"name" yaml:"name" toml:"name"`
		VisibilityTimeoutSec int    `json:"visibility_timeout_sec,omitempty" yaml:"visibility_timeout_sec,omitempty" toml:"visibility_timeout_sec,omitempty"`
		MaxReceiveCount      int    `json:"max_receive_count,omitempty" yaml:"max_receive_count,omitempty" toml:"max_receive_count,omitempty"`
	}

	Compute struct {
		Functions []Function `json:"functions,omitempty" yaml:"functions,omitempty" toml:"functions,omitempty"`
	}

	Function struct {
		Name        string            `json:"name" yaml:"name" toml:"name"`
		Handler     string            `json:"handler,omitempty" yaml:"handler,omitempty" toml:"handler,omitempty"`
		Runtime     string            `json:"runtime,omitempty" yaml:"runtime,omitempty" toml:"runtime,omitempty"`
		CodePath    string            `json:"code_path" yaml:"code_path" toml:"code_path"`
		MemoryMB    int               `json:"memory_mb,omitempty" yaml:"memory_mb,omitempty" toml:"memory_mb,omitempty"`
		TimeoutSec  int               `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty" toml:"timeout_sec,omitempty"`
		Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty" toml:"environment,omitempty"`
	}

	Monitoring struct {
		LogRetentionDays int     `json:"log_retention_days,omitempty" yaml:"log_retention_days,omitempty" toml:"log_retention_days,omitempty"`
		ErrorThreshold   float64 `json:"error_threshold,omitempty" yaml:"error_threshold,omitempty" toml:"error_threshold,omitempty"`
		AlarmEmail       string  `json:"alarm_email,omitempty" yaml:"alarm_email,omitempty" toml:"alarm_email,omitempty"`
	}

	Api struct {
		StageName string  `json:"stage_name,omitempty" yaml:"stage_name,omitempty" toml:"stage_name,omitempty"`
		Routes    []Route `json:"routes,omitempty" yaml:"routes,omitempty" toml:"routes,omitempty"`
	}

	Route struct {
		Method   string `json:"method" yaml:"method" toml:"method"`
		Path     string `json:"path" yaml:"path" toml:"path"`
		Function string `json:"function" yaml:"function" toml:"function"`
	}
)

const (
	BillingPayPerRequest = "PAY_PER_REQUEST"
	BillingProvisioned   = "PROVISIONED"
)

// ApplyDefaults fills in the fields most environment files leave out.
func (e *Environment) ApplyDefaults() {
	if e.Network.SubnetBits == 0 {
		e.Network.SubnetBits = 24
	}
	if e.Network.MaxAZs == 0 {
		e.Network.MaxAZs = 3
	}
	for i := range e.Storage.Tables {
		if e.Storage.Tables[i].BillingMode == "" {
			e.Storage.Tables[i].BillingMode = BillingPayPerRequest
		}
	}
	if e.Storage.Queue != nil {
		if e.Storage.Queue.VisibilityTimeoutSec == 0 {
			e.Storage.Queue.VisibilityTimeoutSec = 30
		}
		if e.Storage.Queue.MaxReceiveCount == 0 {
			e.Storage.Queue.MaxReceiveCount = 5
		}
	}
	for i := range e.Compute.Functions {
		fn := &e.Compute.Functions[i]
		if fn.Runtime == "" {
			fn.Runtime = "provided.al2"
		}
		if fn.Handler == "" {
			fn.Handler = "bootstrap"
		}
		if fn.MemoryMB == 0 {
			fn.MemoryMB = 128
		}
		if fn.TimeoutSec == 0 {
			fn.TimeoutSec = 30
		}
	}
	if e.Monitoring.LogRetentionDays == 0 {
		e.Monitoring.LogRetentionDays = 30
	}
	if e.Monitoring.ErrorThreshold == 0 {
		e.Monitoring.ErrorThreshold = 1
	}
	if e.Api.StageName == "" {
		e.Api.StageName = e.Stage
	}
}

// FunctionNames returns the configured function names in declaration order.
func (e *Environment) FunctionNames() []string {
	names := make([]string, 0, len(e.Compute.Functions))
	for _, fn := range e.Compute.Functions {
		names = append(names, fn.Name)
	}
	return names
}
