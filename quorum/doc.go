// Package quorum coordinates unlock attempts across authentication modules.
//
// An attempt targets a set of modules and a threshold. Modules that were
// given input are advanced concurrently; the coordinator then watches module
// states until threshold of them are authorized, at which point the shares
// of the lowest authorized ids are combined into the master secret. An
// attempt fails early with interfaces.ErrQuorumUnreachable once too many
// targets have failed permanently, and with interfaces.ErrAttemptTimedOut
// when its window elapses. Only one attempt runs at a time.
package quorum
