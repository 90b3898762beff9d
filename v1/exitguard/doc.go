// Package exitguard removes held lock markers when the process is asked to
// terminate. A single signal handler covers every tracked marker and is only
// installed while at least one lock is outstanding. Forceful kills and
// runtime crashes bypass the guard; stale markers left that way are cleaned
// up by the staleness policy of the next acquirer.
package exitguard
