package api

// OpOf exposes opOf to the external test package.
var OpOf = opOf
