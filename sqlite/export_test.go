package sqlite

// SetExecHook installs a hook that runs before every statement and
// can fail it, letting tests inject storage failures at a chosen
// write. Passing nil removes the hook.
func (db *DB) SetExecHook(hook func(query string) error) {
	db.execHook = hook
}
