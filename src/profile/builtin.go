package profile

// builtin lists the profiles shipped with vdist. The *-custom images carry a
// prebuilt interpreter under /root/custom_python for compile_python=false
// builds.
var builtin = []Profile{
	{Name: "ubuntu-lts", DistributionFamily: FamilyDebian, BaseImage: "dantesignal31/vdist:ubuntu-lts", PackagingBackend: BackendFPM, PackageFormat: FormatDeb},
	{Name: "ubuntu-lts-custom", DistributionFamily: FamilyDebian, BaseImage: "dantesignal31/vdist:ubuntu-lts-custom", PackagingBackend: BackendFPM, PackageFormat: FormatDeb},
	{Name: "debian", DistributionFamily: FamilyDebian, BaseImage: "dantesignal31/vdist:debian", PackagingBackend: BackendFPM, PackageFormat: FormatDeb},
	{Name: "centos", DistributionFamily: FamilyRedHat, BaseImage: "dantesignal31/vdist:centos", PackagingBackend: BackendFPM, PackageFormat: FormatRPM},
	{Name: "centos7", DistributionFamily: FamilyRedHat, BaseImage: "dantesignal31/vdist:centos7", PackagingBackend: BackendFPM, PackageFormat: FormatRPM},
	{Name: "centos-custom", DistributionFamily: FamilyRedHat, BaseImage: "dantesignal31/vdist:centos-custom", PackagingBackend: BackendFPM, PackageFormat: FormatRPM},
	{Name: "centos7-custom", DistributionFamily: FamilyRedHat, BaseImage: "dantesignal31/vdist:centos7-custom", PackagingBackend: BackendFPM, PackageFormat: FormatRPM},
	{Name: "archlinux", DistributionFamily: FamilyArchLinux, BaseImage: "dantesignal31/vdist:archlinux", PackagingBackend: BackendFPM, PackageFormat: FormatPacman},
}
