package checkpointer

// nStep implements checkpointing every N iterations
type nStep struct {
	interval int
	object   Serializable // Object to save

	// filename returns the filename of the file to save the object in
	// at a given iteration
	filename func(itr int) string
}

// NewNStep returns a checkpointer that checkpoints every n iterations.
func NewNStep(n int, object Serializable,
	filename func(itr int) string) Checkpointer {
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the Checkpointer's tracked object if itr is a
// multiple of the interval
func (n *nStep) Checkpoint(itr int) error {
	if itr%n.interval == 0 {
		return n.object.Save(n.filename(itr))
	}
	return nil
}
