package rafflequeue

// UpkeepJob asks the raffle to close the round when it is eligible. It is
// enqueued periodically and carries no arguments.
type UpkeepJob struct{}

// Kind returns the job type identifier for River
func (UpkeepJob) Kind() string { return "raffle_upkeep" }
