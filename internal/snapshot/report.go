package snapshot

// ImportReport summarizes what an import changed.
type ImportReport struct {
	UsersCreated    int
	UsersUpdated    int
	Categories      int
	Expenses        int
	ExpensesDeleted int64
	// Skipped lists expenses dropped because their owner is not among the
	// document's users.
	Skipped []SkippedExpense
}

// SkippedExpense identifies a dropped entry by its position in the document.
type SkippedExpense struct {
	Index    int
	Username string
}

// DanglingCount is the number of expenses skipped for an unknown owner.
func (r ImportReport) DanglingCount() int {
	return len(r.Skipped)
}
