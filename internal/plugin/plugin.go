package plugin

import "fmt"

// PluginName tags every dispatched record.
const PluginName = "fritzbox"

// Record is one measurement handed to the sink. Records are built fresh per
// field per poll cycle and not retained.
type Record struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	Values         []Number
}

// Sink receives dispatched records and non-fatal diagnostics. Dispatch is
// fire-and-forget; the plugin never observes a result.
type Sink interface {
	Dispatch(Record)
	Warning(string)
}

// Connection is the router side of a poll cycle: issue one remote action and
// get back its response arguments by name.
type Connection interface {
	Call(service, action string) (map[string]any, error)
	ModelName() string
	Close() error
}

// Connector opens a Connection from resolved connection parameters. Injected
// so tests can substitute a fake router.
type Connector func(address string, port int, user, password string) (Connection, error)

// Plugin polls the router and reports measurements through the sink. The host
// drives it through four callbacks: Configure once, Init once, Read on every
// scheduled tick, Shutdown once at teardown. Callbacks are invoked serially
// by host contract, so Plugin holds no locks.
type Plugin struct {
	sink    Sink
	connect Connector

	cfg    ConnectionConfig
	cfgErr error
	conn   Connection
	host   string
}

// New creates an unconfigured, unconnected plugin. Without a Configure call
// the device-standard connection defaults apply.
func New(sink Sink, connect Connector) *Plugin {
	return &Plugin{
		sink:    sink,
		connect: connect,
		cfg:     defaultConfig(),
	}
}

// Configure resolves raw host configuration. It never fails: unknown keys and
// malformed values are reported through the sink's warning channel, and a
// Port that cannot be coerced is deferred to Init so the host's configuration
// phase always completes.
func (p *Plugin) Configure(entries []ConfigEntry) {
	p.cfg, p.cfgErr = resolveConfig(entries, p.sink.Warning)
}

// Init opens the router connection. A failure here is fatal to the plugin
// instance; the host is expected to propagate it. No retry.
func (p *Plugin) Init() error {
	if p.cfgErr != nil {
		return fmt.Errorf("fritzbox plugin: %w", p.cfgErr)
	}

	conn, err := p.connect(p.cfg.Address, p.cfg.Port, p.cfg.User, p.cfg.Password)
	if err != nil {
		return fmt.Errorf("fritzbox plugin: connect %s:%d: %w", p.cfg.Address, p.cfg.Port, err)
	}

	p.conn = conn
	p.host = p.cfg.Hostname
	if p.host == "" {
		p.host = conn.ModelName()
	}

	return nil
}

// Read polls every catalog query in order and dispatches one record per
// extracted field. A failed call or a missing field drops only the records of
// that query; the remaining queries still run. An unreachable WAN service
// must not blank out LAN statistics.
func (p *Plugin) Read() error {
	if p.conn == nil {
		return fmt.Errorf("fritzbox plugin: read before init")
	}

	for _, q := range catalog {
		result, err := p.conn.Call(q.Service, q.Action)
		if err != nil {
			p.sink.Warning(fmt.Sprintf("fritzbox plugin: %s %s: %v", q.Service, q.Action, err))
			continue
		}

		for _, f := range q.Fields {
			raw, ok := result[f.Source]
			if !ok {
				continue
			}

			var value Number
			if f.Convert != nil {
				value, ok = f.Convert(raw)
			} else {
				value, ok = coerceNumber(raw)
			}
			if !ok {
				p.sink.Warning(fmt.Sprintf("fritzbox plugin: %s %s: unusable value %v for %s", q.Service, q.Action, raw, f.Source))
				continue
			}

			p.sink.Dispatch(Record{
				Host:           p.host,
				Plugin:         PluginName,
				PluginInstance: p.cfg.Instance,
				Type:           f.Type,
				TypeInstance:   f.TypeInstance,
				Values:         []Number{value},
			})
		}
	}

	return nil
}

// Shutdown releases the router connection. Called exactly once by contract.
func (p *Plugin) Shutdown() error {
	if p.conn == nil {
		return nil
	}

	err := p.conn.Close()
	p.conn = nil

	return err
}
