// Package rwcoord provides an in-process reader/writer coordinator with
// writer priority. Unlike sync.RWMutex it is context-aware and queues
// waiters in FIFO order: once a writer is waiting, newly arriving readers
// queue behind it, so writers cannot be starved by a steady reader stream.
package rwcoord
