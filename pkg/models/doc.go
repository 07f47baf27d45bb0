// Package models defines the shared domain types: platforms, users,
// sessions, apps, deployments, alerts and backups, together with the
// JSON column helpers used to store lists and maps in MySQL.
package models
