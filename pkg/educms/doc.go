// Package educms provides the content engine behind the educational platform:
// articles, counsels, podcasts, videos and courses, the users who favorite
// and join them, and the categories they are filed under.
//
// It exposes a single Service interface built from pluggable backends
// (Repository, MediaStore, EventSink). Implementations of repositories
// (memory, Postgres, MongoDB) and media stores (memory, filesystem, S3) are
// provided under subpackages.
//
// Reference integrity
//
// Items reference each other through same-kind "related" sets, courses
// compose an ordered curriculum of articles, videos and quizzes, and users
// hold favorite sets and course enrollments. None of these references is
// enforced by the store. The Service validates references before every
// write and prunes them on every deletion. Deletion is the only path that
// removes a record; it runs media cleanup, then the prune passes, then the
// record removal, and restarts from the top when a step fails. Every prune
// step is idempotent, so restarts converge.
//
// Enrollments are stored once, keyed by (user, course). Course.JoinedBy and
// User.JoinedCourses are views computed from that relation on read.
package educms
