// Package dirstat measures the disk usage of a directory tree.
//
// It walks the tree with fastwalk, limited to a single worker so entries are
// visited sequentially, and sums the sizes of all regular files.
package dirstat
