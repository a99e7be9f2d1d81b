/*
Package authsdk is the client core of the clubhouse identity service.

# Overview

A client process (the member console, a web front-end) owns exactly one
session. The package is organised around the pieces that manage it:

  - Backend: the identity service contract. Client speaks HTTP to a remote
    identity server; an in-process implementation lives in the server's
    service package. Either can be plugged in.
  - Gateway: wraps every backend call with a timeout race and bounded retries
    for idempotent reads.
  - SessionStore: the durable cache of the current session (file, Redis or
    memory).
  - Service: the orchestrator consumed by UIs. Every operation returns a
    Result.

Create one Service at startup and pass it to every consumer:

	backend := authsdk.NewClient("https://id.example.org")
	store := authsdk.NewFileSessionStore("/home/me/.config/clubctl/session.json")
	svc := authsdk.MustNewService(backend, store)

	// Revalidate a session left by a previous run
	if res := svc.Restore(ctx); !res.Success {
		fmt.Println(res.Message)
	}

	res := svc.Login(ctx, "a@example.org", "correct horse")
	if !res.Success {
		fmt.Println(res.Message) // always display-ready
		return
	}

# Results

Operations never return Go errors for expected failures. A Result carries
either a payload or an ErrorKind plus a message suitable for display:

	res := svc.SetUserRole(ctx, targetID, authsdk.RoleAdmin)
	switch {
	case res.Success:
	case res.Is(authsdk.KindInsufficientPrivilege):
		// hide the admin panel
	default:
		fmt.Println(res.Message)
	}

Use Result.Err when a Go error is more convenient.

# Retries and Timeouts

Every call races a timer (DefaultTimeout). Only validateSession and listUsers
are retried, up to MaxAttempts in total, waiting RetryDelay*n before attempt
n+1. Login, registration, password changes and role changes are attempted
exactly once so credentials are never resubmitted behind the caller's back.
A call that loses the race is abandoned, not cancelled.

# Authorization

IsAdmin, IsSuperAdmin and RequireRole are local checks over the cached user.
They let a UI skip calls that are bound to fail. The identity backend checks
every privileged call again and its InsufficientPrivilege answer always
wins. Privileged Service methods revalidate the session first so they act on
a fresh role.

# Thread Safety

Service and every SessionStore are safe for concurrent use.
*/
package authsdk
