/*
Package ddnsync keeps a DNS record pointed at the public IP address of the host it runs on.

Usage will always start with [ddnsync.New],
which returns a [Reconciler] for one record.
New requires the zone and record name to manage and a [Provider] implementation for a DNS provider.
Each call to [Reconciler.Reconcile] is one pass:
the current IP is resolved and compared with the cached IP from the [Store],
the provider is only consulted when they differ,
and the record is only updated when it does not already hold the current IP.

There is no internal timer. Run one pass per invocation from cron or a systemd timer,
and never run two passes against the same state file at once.
*/
package ddnsync
