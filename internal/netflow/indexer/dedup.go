package indexer

// recentKeys is a small cache of transfer identities seen lately, used to
// short-circuit the ledger INSERT for duplicate deliveries without a round
// trip. The ledger's ON CONFLICT remains authoritative; evicted keys simply
// fall through to it. Entries expire by block age.
type recentKeys struct {
	m    map[string]uint64 // key -> expireBlock
	q    []recentItem      // insertion order
	head int               // pop index
}

type recentItem struct {
	key         string
	expireBlock uint64
}

func newRecentKeys(capHint int) *recentKeys {
	if capHint < 0 {
		capHint = 0
	}
	return &recentKeys{
		m: make(map[string]uint64, capHint),
		q: make([]recentItem, 0, capHint),
	}
}

// Seen reports whether key is present and not expired at nowBlock.
func (d *recentKeys) Seen(key string, nowBlock uint64) bool {
	exp, ok := d.m[key]
	return ok && exp >= nowBlock
}

// Add records key with expireBlock. Callers check Seen first and Add only
// once the event actually landed, so a failed insert never poisons the cache.
func (d *recentKeys) Add(key string, expireBlock uint64) {
	d.m[key] = expireBlock
	d.q = append(d.q, recentItem{key: key, expireBlock: expireBlock})
}

func (d *recentKeys) Evict(nowBlock uint64) {
	for d.head < len(d.q) {
		it := d.q[d.head]
		if it.expireBlock >= nowBlock {
			break
		}
		// Only delete if map still points to this expiry (avoid deleting overwritten keys).
		if exp, ok := d.m[it.key]; ok && exp == it.expireBlock {
			delete(d.m, it.key)
		}
		d.head++
	}

	// Optional compaction to avoid slice growing forever
	if d.head > 4096 && d.head*2 > len(d.q) {
		newQ := make([]recentItem, 0, len(d.q)-d.head)
		newQ = append(newQ, d.q[d.head:]...)
		d.q = newQ
		d.head = 0
	}
}
