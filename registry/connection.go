// SPDX-License-Identifier: GPL-3.0-or-later

package registry

// Connection is a named external-system credential/endpoint template,
// resolved once at pipeline build time against the EnvRegistry (§9
// Design Notes: "treat uri_env_var/user_env_var as configuration values
// resolved once at pipeline build time; do not read env vars inside
// driver hot paths"). Drivers read Template for their own option keys
// (dsn, uri, headers, ...); the core never interprets its contents.
type Connection struct {
	Name     string
	Kind     string // sql | document | http | object-store
	Template map[string]string
}
