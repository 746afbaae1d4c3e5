package registry

import "strings"

// Registry is the exchange address set. It is built once at startup from the
// persisted exchange_addresses rows and never mutated on the ingestion path,
// so lookups need no locking.
type Registry struct {
	byAddr map[string]string // lowercased address -> exchange label
}

type Entry struct {
	Address  string
	Exchange string
}

// DefaultBinance is the baked-in seed list used when BINANCE_ADDRESSES is not set.
var DefaultBinance = []Entry{
	{"0xF977814e90dA44bFA03b6295A0616a897441aceC", "binance"},
	{"0xe7804c37c13166fF0b37F5aE0BB07A3aEbb6e245", "binance"},
	{"0x505e71695E9bc45943c58adEC1650577BcA68fD9", "binance"},
	{"0x290275e3db66394C52272398959845170E4DCb88", "binance"},
	{"0xD5C08681719445A5Fdce2Bda98b341A49050d821", "binance"},
	{"0x082489A616aB4D46d1947eE3F912e080815b08DA", "binance"},
}

func New(entries []Entry) *Registry {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		addr := strings.ToLower(strings.TrimSpace(e.Address))
		if addr == "" {
			continue
		}
		m[addr] = e.Exchange
	}
	return &Registry{byAddr: m}
}

// IsMember reports whether addr belongs to the exchange set.
// Matching is case-insensitive exact.
func (r *Registry) IsMember(addr string) bool {
	_, ok := r.byAddr[strings.ToLower(addr)]
	return ok
}

// Label returns the exchange name for addr, or "" if not a member.
func (r *Registry) Label(addr string) string {
	return r.byAddr[strings.ToLower(addr)]
}

func (r *Registry) Len() int { return len(r.byAddr) }

// FromCSV parses a comma-separated address list into entries, all labeled the
// same exchange. Empty items are dropped.
func FromCSV(csv, exchange string) []Entry {
	parts := strings.Split(csv, ",")
	out := make([]Entry, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Entry{Address: p, Exchange: exchange})
	}
	return out
}
