// Package permission holds permission sets, the request principal and the
// registry of known permission names.
//
// # Naming
//
// Permissions are named "storage.permission", where storage is the
// uncamelized owner of the permission ("MyApp" becomes "my_app"). The
// special name [AdminPermission] marks a principal as admin.
//
// # Architecture boundaries
//
// This package is pure in-memory state with no I/O. Principals are built by
// the account package from storage on every request and never cached here.
package permission
