/*
Package apierrors defines the error kinds shared across the system and
their HTTP status mapping.

Errors carry a Kind, a message safe to show callers and an optional
wrapped cause. KindOf walks a wrapped chain to classify any error;
unclassified errors map to internal. Handlers build responses from the
kind, never from the cause.
*/
package apierrors
