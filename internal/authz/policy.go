package authz

// rbacModel grants a request when any policy line matches one of the
// subject's roles (directly or through the g hierarchy).
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// rbacPolicy lists the grants. "owner" is attached by the engine only when
// the caller authored the resource.
const rbacPolicy = `
# catalog and discussions are public to read
p, anonymous, category, read
p, anonymous, genre, read
p, anonymous, title, read
p, anonymous, review, read
p, anonymous, comment, read

p, authenticated, review, create
p, authenticated, comment, create
p, authenticated, self, read
p, authenticated, self, update

p, owner, review, update
p, owner, review, delete
p, owner, comment, update
p, owner, comment, delete

p, moderator, review, update
p, moderator, review, delete
p, moderator, comment, update
p, moderator, comment, delete

p, admin, category, *
p, admin, genre, *
p, admin, title, *
p, admin, user, *

g, authenticated, anonymous
g, moderator, authenticated
g, admin, moderator
g, superuser, admin
`
