// Package domain decomposes the rectangular simulation region into a
// regular grid of voxels.
//
// Each agent is owned by the voxel containing it. Because the interaction
// cutoff never exceeds a voxel edge ([Cartesian.CheckCutoff]), an agent can
// only interact with agents in its own voxel or one of the up to eight
// voxels returned by [Cartesian.NeighborsOf].
package domain
