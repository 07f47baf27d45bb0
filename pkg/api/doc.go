/*
Package api implements the HTTP control-plane API.

The server exposes a small public surface (health, metrics, login,
user creation) and an authenticated surface for platform management,
cloud bootstrap, backups and the autoscaler metric ingest. Tenant-scoped
routes resolve the platform from the URL and hand handlers a
per-platform database pool.

# Route Layout

	/health                         liveness + DB ping
	/metrics                        Prometheus exposition
	/users/login, /users/create     public
	/me, /users/logout              authenticated
	/autoscaler/metrics             metric push
	/platforms                      platform registry + cloud bootstrap
	/platform/{pid}/apps            tenant-scoped
	/platform/{pid}/alerts          tenant-scoped
	/platform/{pid}/backups         tenant-scoped

Middleware order is RequestID, RealIP, request logging, panic recovery,
request metrics, CORS. The authentication gate wraps the protected
group; tenantResolver wraps the /platform/{pid} subtree and stashes the
platform record plus its pool in the request context.

Handlers return errors through renderError, which maps error kinds to
HTTP status codes and scrubs 5xx detail out of responses. Request bodies
are decoded strictly; unknown fields are rejected.

Backup creation is asynchronous: the handler records the backup as
pending, starts the coordinator on a detached context and returns 202.
A dropped client never cancels a running backup.
*/
package api
