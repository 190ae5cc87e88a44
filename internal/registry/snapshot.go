package registry

// Snapshot is everything a run starts from: the current store listings and
// the previous run's results and plugin list
type Snapshot struct {
	Adapters []*Entry
	Bots     []*Entry
	Drivers  []*Entry
	Plugins  *OrderedMap[*StorePlugin]

	PreviousResults *OrderedMap[*TestResult]
	PreviousPlugins *OrderedMap[*Plugin]
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Adapters:        []*Entry{},
		Bots:            []*Entry{},
		Drivers:         []*Entry{},
		Plugins:         NewOrderedMap[*StorePlugin](),
		PreviousResults: NewOrderedMap[*TestResult](),
		PreviousPlugins: NewOrderedMap[*Plugin](),
	}
}

// Output is everything a run writes
type Output struct {
	Adapters []*Entry
	Bots     []*Entry
	Drivers  []*Entry
	Plugins  []*Plugin
	Results  *OrderedMap[*TestResult]
}
