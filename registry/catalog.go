package registry

// 算法 family 名称。algorithm 包按这些名称注册实现。
const (
	FamilyCuts       = "Cuts"
	FamilyLikelihood = "Likelihood"
	FamilyPDERS      = "PDERS"
	FamilyPDEFoam    = "PDEFoam"
	FamilyKNN        = "KNN"
	FamilyHMatrix    = "HMatrix"
	FamilyFisher     = "Fisher"
	FamilyFDA        = "FDA"
	FamilyMLP        = "MLP"
	FamilyCFMlpANN   = "CFMlpANN"
	FamilyTMlpANN    = "TMlpANN"
	FamilySVM        = "SVM"
	FamilyBDT        = "BDT"
	FamilyRuleFit    = "RuleFit"
	FamilyRPC        = "RPC"
)

type catalogEntry struct {
	name    string
	family  string
	enabled bool
	options string
}

// catalog 是内置的默认算法集合，按分组排列。默认启用 CutsSA、BDT、BDTG。
var catalog = []catalogEntry{
	// 矩形 cut 优化
	{"Cuts", FamilyCuts, false, "!H:!V:FitMethod=MC:EffSel:SampleSize=200000:VarProp=FSmart"},
	{"CutsD", FamilyCuts, false, "!H:!V:FitMethod=MC:EffSel:SampleSize=200000:VarProp=FSmart:VarTransform=Decorrelate"},
	{"CutsPCA", FamilyCuts, false, "!H:!V:FitMethod=MC:EffSel:SampleSize=200000:VarProp=FSmart:VarTransform=PCA"},
	{"CutsGA", FamilyCuts, false, "H:!V:FitMethod=GA:CutRangeMin[0]=-10:CutRangeMax[0]=10:VarProp[1]=FMax:EffSel:Steps=30:Cycles=3:PopSize=400:SC_steps=10:SC_rate=5:SC_factor=0.95"},
	{"CutsSA", FamilyCuts, true, "!H:!V:FitMethod=SA:EffSel:MaxCalls=150000:KernelTemp=IncAdaptive:InitialTemp=1e+6:MinTemp=1e-6:Eps=1e-10:UseDefaultScale"},

	// 一维似然（朴素贝叶斯）
	{"Likelihood", FamilyLikelihood, false, "H:!V:TransformOutput:PDFInterpol=Spline2:NSmoothSig[0]=20:NSmoothBkg[0]=20:NSmoothBkg[1]=10:NSmooth=1:NAvEvtPerBin=50"},
	{"LikelihoodD", FamilyLikelihood, false, "!H:!V:TransformOutput:PDFInterpol=Spline2:NSmoothSig[0]=20:NSmoothBkg[0]=20:NSmooth=5:NAvEvtPerBin=50:VarTransform=Decorrelate"},
	{"LikelihoodPCA", FamilyLikelihood, false, "!H:!V:!TransformOutput:PDFInterpol=Spline2:NSmoothSig[0]=20:NSmoothBkg[0]=20:NSmooth=5:NAvEvtPerBin=50:VarTransform=PCA"},
	{"LikelihoodKDE", FamilyLikelihood, false, "!H:!V:!TransformOutput:PDFInterpol=KDE:KDEtype=Gauss:KDEiter=Adaptive:KDEFineFactor=0.3:KDEborder=None:NAvEvtPerBin=50"},
	{"LikelihoodMIX", FamilyLikelihood, false, "!H:!V:!TransformOutput:PDFInterpolSig[0]=KDE:PDFInterpolBkg[0]=KDE:PDFInterpolSig[1]=KDE:PDFInterpolBkg[1]=KDE:PDFInterpolSig[2]=Spline2:PDFInterpolBkg[2]=Spline2:PDFInterpolSig[3]=Spline2:PDFInterpolBkg[3]=Spline2:KDEtype=Gauss:KDEiter=Nonadaptive:KDEborder=None:NAvEvtPerBin=50"},

	// 多维似然 / 近邻
	{"PDERS", FamilyPDERS, false, "!H:!V:NormTree=T:VolumeRangeMode=Adaptive:KernelEstimator=Gauss:GaussSigma=0.3:NEventsMin=400:NEventsMax=600"},
	{"PDERSD", FamilyPDERS, false, "!H:!V:VolumeRangeMode=Adaptive:KernelEstimator=Gauss:GaussSigma=0.3:NEventsMin=400:NEventsMax=600:VarTransform=Decorrelate"},
	{"PDERSPCA", FamilyPDERS, false, "!H:!V:VolumeRangeMode=Adaptive:KernelEstimator=Gauss:GaussSigma=0.3:NEventsMin=400:NEventsMax=600:VarTransform=PCA"},
	{"PDEFoam", FamilyPDEFoam, false, "!H:!V:SigBgSeparate=F:TailCut=0.001:VolFrac=0.0666:nActiveCells=500:nSampl=2000:nBin=5:Nmin=100:Kernel=None:Compress=T"},
	{"PDEFoamBoost", FamilyPDEFoam, false, "!H:!V:Boost_Num=30:Boost_Transform=linear:SigBgSeparate=F:MaxDepth=4:UseYesNoCell=T:DTLogic=MisClassificationError:FillFoamWithOrigWeights=F:TailCut=0:nActiveCells=500:nBin=20:Nmin=400:Kernel=None:Compress=T"},
	{"KNN", FamilyKNN, false, "H:nkNN=20:ScaleFrac=0.8:SigmaFact=1.0:Kernel=Gaus:UseKernel=F:UseWeight=T:!Trim"},

	// 线性判别
	{"HMatrix", FamilyHMatrix, false, "!H:!V:VarTransform=None"},
	{"LD", FamilyFisher, false, "H:!V:VarTransform=None:CreateMVAPdfs:PDFInterpolMVAPdf=Spline2:NbinsMVAPdf=50:NsmoothMVAPdf=10"},
	{"Fisher", FamilyFisher, false, "H:!V:Fisher:VarTransform=None:CreateMVAPdfs:PDFInterpolMVAPdf=Spline2:NbinsMVAPdf=50:NsmoothMVAPdf=10"},
	{"FisherG", FamilyFisher, false, "H:!V:VarTransform=Gauss"},
	{"BoostedFisher", FamilyFisher, false, "H:!V:Boost_Num=20:Boost_Transform=log:Boost_Type=AdaBoost:Boost_AdaBoostBeta=0.2:!Boost_DetailedMonitoring"},

	// 函数判别分析
	{"FDA_GA", FamilyFDA, false, "H:!V:Formula=(0)+(1)*x0+(2)*x1+(3)*x2+(4)*x3:ParRanges=(-1,1);(-10,10);(-10,10);(-10,10);(-10,10):FitMethod=GA:PopSize=300:Cycles=3:Steps=20:Trim=True:SaveBestGen=1"},
	{"FDA_SA", FamilyFDA, false, "H:!V:Formula=(0)+(1)*x0+(2)*x1+(3)*x2+(4)*x3:ParRanges=(-1,1);(-10,10);(-10,10);(-10,10);(-10,10):FitMethod=SA:MaxCalls=15000:KernelTemp=IncAdaptive:InitialTemp=1e+6:MinTemp=1e-6:Eps=1e-10:UseDefaultScale"},
	{"FDA_MC", FamilyFDA, false, "H:!V:Formula=(0)+(1)*x0+(2)*x1+(3)*x2+(4)*x3:ParRanges=(-1,1);(-10,10);(-10,10);(-10,10);(-10,10):FitMethod=MC:SampleSize=100000:Sigma=0.1"},
	{"FDA_MT", FamilyFDA, false, "H:!V:Formula=(0)+(1)*x0+(2)*x1+(3)*x2+(4)*x3:ParRanges=(-1,1);(-10,10);(-10,10);(-10,10);(-10,10):FitMethod=MINUIT:ErrorLevel=1:PrintLevel=-1:FitStrategy=2:UseImprove:UseMinos:SetBatch"},
	{"FDA_GAMT", FamilyFDA, false, "H:!V:Formula=(0)+(1)*x0+(2)*x1+(3)*x2+(4)*x3:ParRanges=(-1,1);(-10,10);(-10,10);(-10,10);(-10,10):FitMethod=GA:Converger=MINUIT:ErrorLevel=1:PrintLevel=-1:FitStrategy=0:!UseImprove:!UseMinos:SetBatch:Cycles=1:PopSize=5:Steps=5:Trim"},
	{"FDA_MCMT", FamilyFDA, false, "H:!V:Formula=(0)+(1)*x0+(2)*x1+(3)*x2+(4)*x3:ParRanges=(-1,1);(-10,10);(-10,10);(-10,10);(-10,10):FitMethod=MC:Converger=MINUIT:ErrorLevel=1:PrintLevel=-1:FitStrategy=0:!UseImprove:!UseMinos:SetBatch:SampleSize=20"},

	// 神经网络
	{"MLP", FamilyMLP, false, "H:!V:NeuronType=tanh:VarTransform=N:NCycles=600:HiddenLayers=N+5:TestRate=5:!UseRegulator"},
	{"MLPBFGS", FamilyMLP, false, "H:!V:NeuronType=tanh:VarTransform=N:NCycles=600:HiddenLayers=N+5:TestRate=5:TrainingMethod=BFGS:!UseRegulator"},
	{"MLPBNN", FamilyMLP, false, "H:!V:NeuronType=tanh:VarTransform=N:NCycles=600:HiddenLayers=N+5:TestRate=5:TrainingMethod=BFGS:UseRegulator"},
	{"CFMlpANN", FamilyCFMlpANN, false, "!H:!V:NCycles=2000:HiddenLayers=N+1,N"},
	{"TMlpANN", FamilyTMlpANN, false, "!H:!V:NCycles=200:HiddenLayers=N+1,N:LearningMethod=BFGS:ValidationFraction=0.3"},

	// 支持向量机
	{"SVM", FamilySVM, false, "Gamma=0.25:Tol=0.001:VarTransform=Norm"},

	// 提升决策树
	{"BDT", FamilyBDT, true, "!H:!V:NTrees=850:MinNodeSize=2.5%:MaxDepth=3:BoostType=AdaBoost:AdaBoostBeta=0.5:UseBaggedBoost:BaggedSampleFraction=0.5:SeparationType=GiniIndex:nCuts=20"},
	{"BDTG", FamilyBDT, true, "!H:!V:NTrees=1000:MinNodeSize=2.5%:BoostType=Grad:Shrinkage=0.10:UseBaggedBoost:BaggedSampleFraction=0.5:nCuts=20:MaxDepth=2"},
	{"BDTB", FamilyBDT, false, "!H:!V:NTrees=400:BoostType=Bagging:SeparationType=GiniIndex:nCuts=20"},
	{"BDTD", FamilyBDT, false, "!H:!V:NTrees=400:MinNodeSize=5%:MaxDepth=3:BoostType=AdaBoost:SeparationType=GiniIndex:nCuts=20:VarTransform=Decorrelate"},
	{"BDTF", FamilyBDT, false, "!H:!V:NTrees=50:MinNodeSize=2.5%:UseFisherCuts:MaxDepth=3:BoostType=AdaBoost:AdaBoostBeta=0.5:SeparationType=GiniIndex:nCuts=20"},

	// 规则集成
	{"RuleFit", FamilyRuleFit, false, "H:!V:RuleFitModule=RFTMVA:Model=ModRuleLinear:MinImp=0.001:RuleMinDist=0.001:NTrees=20:fEventsMin=0.01:fEventsMax=0.5:GDTau=-1.0:GDTauPrec=0.01:GDStep=0.01:GDNSteps=10000:GDErrScale=1.02"},
}

// Default 返回内置目录的一个新实例。每次调用互不影响。
func Default() *Registry {
	r := New()
	for _, e := range catalog {
		if err := r.Register(AlgorithmSpec{
			Name:    e.name,
			Family:  e.family,
			Enabled: e.enabled,
			Options: MustParseOptions(e.options),
		}); err != nil {
			panic(err)
		}
	}
	return r
}

// DefaultNames 返回内置目录中默认启用的算法名称。
func DefaultNames() []string {
	var out []string
	for _, e := range catalog {
		if e.enabled {
			out = append(out, e.name)
		}
	}
	return out
}
