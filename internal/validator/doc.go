// Package validator decides whether an artifact written by an external worker
// can be opened.
//
// Image units are TIFF files and are checked by decoding their header and
// first image directory. Assembled volumes are HDF5 containers (Imaris .ims)
// and are checked for a superblock signature at one of the offsets the HDF5
// format allows. Neither check reads pixel data.
package validator
