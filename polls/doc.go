// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package polls implements the poll lifecycle and vote counting.

# Phases

A poll's phase is derived from its bounds and the service clock on every
operation and is never stored:

	now < startsAt            NOT_STARTED
	startsAt <= now < endsAt  IN_PROGRESS
	now >= endsAt             FINISHED

# Rules

	Edit, AddOption, DeleteOption  NOT_STARTED only
	DeleteOption                   more than 3 options must remain
	Vote                           IN_PROGRESS only
	DeletePoll                     any phase

# Votes

Vote checks the poll, its phase and option ownership, then increments the
option counter with a single UPDATE inside a transaction. The VoteCast
event is published only after the commit, so a rejected vote never reaches
subscribers.

# Errors

Rule violations wrap ErrNotFound, ErrInvalidState, ErrMinimumOptions or
ErrInvalidDates. Rejected request fields are reported as *ValidationError.
Store failures are returned prefixed with the operation name.
*/
package polls
