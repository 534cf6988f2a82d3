package timing

// Table holds task timing constants in milliseconds keyed by task name.
// Unknown tasks have zero delays.
type Table struct {
	Pre  map[string]int
	Post map[string]int
}

// PreDelay implements Params.
func (t Table) PreDelay(name string) int { return t.Pre[name] }

// PostDelay implements Params.
func (t Table) PostDelay(name string) int { return t.Post[name] }

// DefaultTable returns the stock delays of the tasks the session reads.
func DefaultTable() Table {
	return Table{
		Pre:  map[string]int{EndOfActionTask: 500},
		Post: map[string]int{RecognitionWait: 300},
	}
}
