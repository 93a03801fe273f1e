// Package mail delivers in-game mails. Reading and claiming a mail publish events whose
// asynchronous listeners touch the game save metadata and credit the reward, both as
// cache-only writes that the next flush persists.
package mail
