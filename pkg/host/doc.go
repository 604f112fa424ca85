/*
Package host applies the idempotent actions that turn a machine into an image
mirror: package installation, the nginx site, the root crontab, the web
service and port declaration.

Every external program goes through an Executor so tests can record the
command lines instead of touching the host. Failed commands wrap
ErrCommandFailed and carry the tail of their output.
*/
package host
