package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Service types and defaults.
const (
	ServiceTypeSecureMQTT = "_secure-mqtt._tcp"
	ServiceTypeMQTT       = "_mqtt._tcp"
	Domain                = "local."
	BrowseTimeout         = 5 * time.Second
)

var (
	ErrNotFound  = errors.New("broker not found")
	ErrNoService = errors.New("no service types configured")
)

// Broker is one discovered MQTT endpoint.
type Broker struct {
	Instance  string
	Service   string
	Host      string
	Port      uint16
	Addresses []string
	Serial    string
	TXT       TXTRecordMap
}

// Secure reports whether the broker was announced as MQTT over TLS.
func (b *Broker) Secure() bool {
	return b.Service == ServiceTypeSecureMQTT
}

// Address returns the host to connect to: the first IPv4 address when
// known, then any address, then the host name.
func (b *Broker) Address() string {
	for _, a := range b.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	if len(b.Addresses) > 0 {
		return b.Addresses[0]
	}
	return b.Host
}

// Dial returns Address joined with the port.
func (b *Broker) Dial() string {
	return net.JoinHostPort(b.Address(), strconv.Itoa(int(b.Port)))
}

// Config configures a Browser.
type Config struct {
	// Services are the DNS-SD service types to browse.
	Services []string

	// Interface restricts browsing to one network interface. Empty means all.
	Interface string

	// Timeout bounds Collect and FindSerial when ctx has no deadline.
	Timeout time.Duration

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the default browser configuration.
func DefaultConfig() Config {
	return Config{
		Services: []string{ServiceTypeSecureMQTT, ServiceTypeMQTT},
		Timeout:  BrowseTimeout,
	}
}

type browseFunc func(ctx context.Context, service string, entries, removed chan *zeroconf.ServiceEntry) error

// Browser browses for MQTT brokers.
type Browser struct {
	config Config
	logger *slog.Logger
	browse browseFunc
}

// NewBrowser creates a browser.
func NewBrowser(config Config) (*Browser, error) {
	if len(config.Services) == 0 {
		return nil, ErrNoService
	}
	if config.Timeout <= 0 {
		config.Timeout = BrowseTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b := &Browser{config: config, logger: logger}
	b.browse = func(ctx context.Context, service string, entries, removed chan *zeroconf.ServiceEntry) error {
		return zeroconf.Browse(ctx, service, Domain, entries, removed, b.browserOptions()...)
	}
	return b, nil
}

// Browse streams brokers as they are first seen. The channel is closed when
// ctx ends.
func (b *Browser) Browse(ctx context.Context) (<-chan *Broker, error) {
	out := make(chan *Broker)

	var wg sync.WaitGroup
	found := &registry{services: make(map[string]*Broker)}

	for _, service := range b.config.Services {
		entries := make(chan *zeroconf.ServiceEntry)
		removed := make(chan *zeroconf.ServiceEntry)

		wg.Add(1)
		go func(entries, removed <-chan *zeroconf.ServiceEntry) {
			defer wg.Done()
			for {
				select {
				case entry, ok := <-entries:
					if !ok {
						return
					}
					broker, isNew := found.add(service, entry)
					if !isNew {
						continue
					}
					b.logger.Debug("broker found", "instance", broker.Instance, "service", service, "addr", broker.Dial())
					select {
					case out <- broker:
					case <-ctx.Done():
						return
					}

				case entry, ok := <-removed:
					if !ok {
						removed = nil
						continue
					}
					found.remove(service, entry)

				case <-ctx.Done():
					return
				}
			}
		}(entries, removed)

		go func() {
			if err := b.browse(ctx, service, entries, removed); err != nil {
				b.logger.Warn("browse failed", "service", service, "error", err)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Collect browses until ctx ends or the configured timeout elapses and
// returns every broker seen.
func (b *Browser) Collect(ctx context.Context) ([]*Broker, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	ch, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Broker
	for broker := range ch {
		out = append(out, broker)
	}
	return out, nil
}

// FindSerial returns the first broker announcing serial.
func (b *Browser) FindSerial(ctx context.Context, serial string) (*Broker, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	ch, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for broker := range ch {
		if broker.Serial == serial {
			return broker, nil
		}
	}
	return nil, ErrNotFound
}

func (b *Browser) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.config.Timeout)
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// registry aggregates entries by service and instance name.
type registry struct {
	mu       sync.Mutex
	services map[string]*Broker
}

func (r *registry) add(service string, entry *zeroconf.ServiceEntry) (*Broker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := service + "/" + entry.Instance
	if existing, ok := r.services[key]; ok {
		existing.Addresses = mergeAddresses(existing.Addresses, entryAddresses(entry))
		return existing, false
	}

	txt := StringsToTXTRecords(entry.Text)
	broker := &Broker{
		Instance:  entry.Instance,
		Service:   service,
		Host:      entry.HostName,
		Port:      uint16(entry.Port),
		Addresses: entryAddresses(entry),
		Serial:    txt.First("serial", "sn", "dev_id"),
		TXT:       txt,
	}
	r.services[key] = broker

	// Hand out a copy so later merges do not race with the receiver.
	c := *broker
	c.Addresses = slices.Clone(broker.Addresses)
	return &c, true
}

func (r *registry) remove(service string, entry *zeroconf.ServiceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := service + "/" + entry.Instance
	existing, ok := r.services[key]
	if !ok {
		return
	}
	existing.Addresses = removeAddresses(existing.Addresses, entryAddresses(entry))
	if len(existing.Addresses) == 0 {
		delete(r.services, key)
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	for _, addr := range added {
		if !slices.Contains(existing, addr) {
			existing = append(existing, addr)
		}
	}
	return existing
}

// removeAddresses drops every address in gone from addresses.
func removeAddresses(addresses, gone []string) []string {
	return slices.DeleteFunc(addresses, func(a string) bool {
		return slices.Contains(gone, a)
	})
}
