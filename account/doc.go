// Package account stores users, groups and their permissions, and rebuilds
// request principals from them.
//
// Every multi-statement mutation runs in one transaction: a failed user
// creation leaves no row behind, and replacing a group's permissions never
// exposes an empty permission list to concurrent readers.
package account
